package logger

import (
	"go.uber.org/zap"
)

// Campos estándar para el OAuth dance.

// Provider crea un campo para el nombre del provider OAuth.
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// UserID crea un campo para el ID del usuario dueño del token.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// DanceState crea un campo para el estado del dance.
func DanceState(v string) zap.Field {
	return zap.String("dance_state", v)
}

// Redirect crea un campo para el destino post-login.
func Redirect(v string) zap.Field {
	return zap.String("redirect", v)
}

// OAuthError crea un campo para el código de error devuelto por el provider.
func OAuthError(v string) zap.Field {
	return zap.String("oauth_error", v)
}

// Key crea un campo genérico para una clave (cache o sesión).
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}
