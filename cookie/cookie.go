package cookie

import (
	"errors"
	"net/http"
	"time"
)

// DefaultName is the identity cookie's conventional name.
const DefaultName = "session"

// Options defines how the identity cookie is issued.
type Options struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// normalize applies defaults without breaking callers.
func (o Options) normalize() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// Read returns the raw identity cookie value from r, or ErrCookieMissing.
func Read(r *http.Request, opts Options) (string, error) {
	opts = opts.normalize()

	c, err := r.Cookie(opts.Name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieMissing
		}
		return "", err
	}
	if c.Value == "" {
		return "", ErrCookieMissing
	}
	return c.Value, nil
}

// Set issues the identity cookie carrying value.
func Set(w http.ResponseWriter, value string, opts Options) {
	opts = opts.normalize()

	c := &http.Cookie{
		Name:     opts.Name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
	if opts.MaxAge > 0 {
		c.MaxAge = int(opts.MaxAge / time.Second)
		c.Expires = time.Now().Add(opts.MaxAge).UTC()
	}
	http.SetCookie(w, c)
}

// Clear instructs the client to drop the identity cookie.
func Clear(w http.ResponseWriter, opts Options) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name,
		Value:    "",
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}
