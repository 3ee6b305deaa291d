package transient

import (
	"log"
	"net/http"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// CookieOptions configura la cookie de sesión transitoria.
type CookieOptions struct {
	// Name de la cookie. Default: "dance_session".
	Name string
	// TTL de la cookie y del JWT que la firma. Default: 30m.
	TTL time.Duration
	// Domain opcional (si vacío, no se setea).
	Domain string
	// SameSite: "", "lax", "strict", "none" (case-insensitive). Default Lax.
	SameSite string
	// Secure marca la cookie Secure (recomendado en prod con https).
	Secure bool
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.Name == "" {
		o.Name = "dance_session"
	}
	if o.TTL <= 0 {
		o.TTL = 30 * time.Minute
	}
	return o
}

// CookieStore implementa Store sobre una cookie firmada con HS256.
// El payload completo viaja en el JWT; cada Set/Delete re-emite la cookie.
// Una instancia vive exactamente un exchange HTTP.
type CookieStore struct {
	w      http.ResponseWriter
	secret []byte
	opts   CookieOptions
	data   map[string]string
}

// NewCookie crea un Store respaldado por cookie para el exchange (w, r).
// Si el request trae una cookie válida, su contenido queda disponible;
// una firma inválida o expirada se descarta en silencio (estado transitorio,
// no hay nada que recuperar).
func NewCookie(w http.ResponseWriter, r *http.Request, secret []byte, opts CookieOptions) *CookieStore {
	s := &CookieStore{
		w:      w,
		secret: secret,
		opts:   opts.withDefaults(),
		data:   make(map[string]string),
	}
	c, err := r.Cookie(s.opts.Name)
	if err != nil || c.Value == "" {
		return s
	}
	tok, err := jwtv5.Parse(c.Value, func(t *jwtv5.Token) (any, error) {
		return secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return s
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return s
	}
	kv, _ := claims["kv"].(map[string]any)
	for k, v := range kv {
		if sv, ok := v.(string); ok {
			s.data[k] = sv
		}
	}
	return s
}

func (s *CookieStore) Get(key string) (string, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *CookieStore) Set(key, value string) {
	s.data[key] = value
	s.flush()
}

func (s *CookieStore) Delete(key string) {
	delete(s.data, key)
	s.flush()
}

// flush re-firma el payload y re-emite la cookie.
func (s *CookieStore) flush() {
	now := time.Now().UTC()
	kv := make(map[string]any, len(s.data))
	for k, v := range s.data {
		kv[k] = v
	}
	claims := jwtv5.MapClaims{
		"kv":  kv,
		"iat": now.Unix(),
		"exp": now.Add(s.opts.TTL).Unix(),
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		// HS256 sobre bytes no falla en la práctica; si pasa, no emitimos cookie.
		log.Printf("transient: firma de cookie falló: %v", err)
		return
	}
	// Una sola cookie autoritativa por respuesta: descartamos cualquier
	// emisión anterior de esta misma cookie antes de re-emitirla.
	header := s.w.Header()
	kept := header["Set-Cookie"][:0]
	for _, line := range header["Set-Cookie"] {
		if !strings.HasPrefix(line, s.opts.Name+"=") {
			kept = append(kept, line)
		}
	}
	header["Set-Cookie"] = kept
	http.SetCookie(s.w, buildCookie(s.opts, signed, now))
}

// parseSameSite convierte el string de config a http.SameSite.
// Acepta: "", "lax", "strict", "none" (case-insensitive). Default: Lax.
func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func buildCookie(opts CookieOptions, value string, now time.Time) *http.Cookie {
	ss := parseSameSite(opts.SameSite)
	if ss == http.SameSiteNoneMode && !opts.Secure {
		// Algunos navegadores rechazan SameSite=None sin Secure.
		log.Printf("transient: SameSite=None sin Secure (domain=%q)", opts.Domain)
	}
	c := &http.Cookie{
		Name:     opts.Name,
		Value:    value,
		Path:     "/",
		Expires:  now.Add(opts.TTL),
		MaxAge:   int(opts.TTL.Seconds()),
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: ss,
	}
	if opts.Domain != "" {
		c.Domain = opts.Domain
	}
	return c
}
