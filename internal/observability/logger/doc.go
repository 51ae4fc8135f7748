// Package logger entrega el logger estructurado (zap) del servicio.
//
// Uso típico:
//
//	logger.Init(logger.Config{Env: "prod", Level: "info"})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.clientcreds"))
//	log.Info("token issued", logger.ClientID(id))
package logger
