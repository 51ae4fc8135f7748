package secret

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Hasher expone Hash/Verify con concurrencia acotada. Cada cómputo Argon2id
// toca 64 MiB; sin límite, una ráfaga de requests al token endpoint puede
// agotar la memoria del proceso.
type Hasher struct {
	params Params
	sem    *semaphore.Weighted
}

// NewHasher crea un Hasher que permite a lo sumo maxConcurrent cómputos en
// paralelo. maxConcurrent <= 0 usa 4.
func NewHasher(p Params, maxConcurrent int64) *Hasher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Hasher{params: p, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Hash hashea el secreto respetando el límite de concurrencia.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	// Acquire no consulta el contexto cuando hay capacidad libre; un
	// contexto ya cancelado debe cortar antes de gastar 64 MiB.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	return Hash(h.params, plain)
}

// Verify verifica el secreto respetando el límite de concurrencia.
// Si el contexto se cancela antes de adquirir el slot, retorna false.
func (h *Hasher) Verify(ctx context.Context, plain, encoded string) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)
	return Verify(h.params, plain, encoded)
}
