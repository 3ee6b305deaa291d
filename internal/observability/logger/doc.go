// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada exchange HTTP puede llevar su propio logger "scoped"
//     con campos del dance (provider, user_id) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{Env: "prod", Level: "info"})
//	defer logger.Sync()
//
// En controllers/stores:
//
//	log := logger.Named("dance").With(logger.Provider("github"))
//	log.Info("token accepted", logger.UserID(uid))
package logger
