// Package repository define las entidades del dominio y las interfaces de
// persistencia. Los adapters concretos viven en internal/store/adapters.
//
// Las entidades solo guardan referencias por ID: ninguna entidad mantiene un
// puntero vivo a otra entidad mutable.
package repository
