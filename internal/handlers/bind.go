package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"admin_dashboard/internal/config"
)

const maxFormBody = 1 << 20

// FormBinder is a request payload that can also arrive as an HTML form.
type FormBinder interface {
	BindForm(form url.Values) error
}

// Bind decodes a JSON body into v when the request declares one, and the
// urlencoded form otherwise.
func Bind(w http.ResponseWriter, r *http.Request, v FormBinder) error {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := config.DecodeJSON(w, r, v); err != nil {
			return BadRequest("Invalid request payload", err)
		}
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		return BadRequest("Invalid form body", err)
	}
	return v.BindForm(r.PostForm)
}

// FormString returns a pointer to the trimmed field, or nil when the form
// does not carry it.
func FormString(form url.Values, key string) *string {
	if !form.Has(key) {
		return nil
	}
	v := strings.TrimSpace(form.Get(key))
	return &v
}

// FormInt parses an optional integer field.
func FormInt(form url.Values, key string) (*int, error) {
	raw := FormString(form, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(*raw)
	if err != nil {
		return nil, BadRequest("Invalid "+key, err)
	}
	return &n, nil
}

// FormFloat parses an optional decimal field.
func FormFloat(form url.Values, key string) (*float64, error) {
	raw := FormString(form, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(*raw, 64)
	if err != nil {
		return nil, BadRequest("Invalid "+key, err)
	}
	return &f, nil
}

// FormBool reads a checkbox: present and truthy means true.
func FormBool(form url.Values, key string) bool {
	v, err := strconv.ParseBool(form.Get(key))
	return err == nil && v
}
