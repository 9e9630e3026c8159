package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/security"
	"admin_dashboard/internal/store"
	"admin_dashboard/internal/views"
)

// RequestError is a malformed body or parameter.
type RequestError struct {
	Msg string
	Err error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *RequestError) Unwrap() error { return e.Err }

// BadRequest wraps err as a RequestError.
func BadRequest(msg string, err error) error {
	return &RequestError{Msg: msg, Err: err}
}

// ReturnTo is where a form post goes back to: the local return_to field, or
// the layout.
func ReturnTo(r *http.Request) string {
	return security.SafeRedirect(r.FormValue("return_to"), "/")
}

// Done reports success. API callers get a JSON envelope with status; form
// posts get a success flash and a redirect back to the layout.
func (h *Handler) Done(w http.ResponseWriter, r *http.Request, status int, message string, data map[string]any) {
	if middlewares.IsAPIRequest(r) {
		if status == http.StatusNoContent {
			config.RespondNoContent(w)
			return
		}
		config.RespondSuccess(w, status, message, data)
		return
	}
	h.SetFlash(r.Context(), middlewares.GetSessionIDFromContext(r), views.Flash{Kind: views.FlashSuccess, Message: message})
	http.Redirect(w, r, ReturnTo(r), http.StatusSeeOther)
}

// Fail maps err onto a response. what names the thing being handled, as in
// "user" or "role".
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	var (
		fe     store.FieldErrors
		reqErr *RequestError
		status int
		msg    string
	)
	switch {
	case errors.As(err, &fe):
		status, msg = http.StatusUnprocessableEntity, "Please correct the highlighted fields"
	case errors.As(err, &reqErr):
		status, msg = http.StatusBadRequest, reqErr.Msg
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, fmt.Sprintf("The %s does not exist", what)
	case errors.Is(err, store.ErrConflict):
		status, msg = http.StatusConflict, fmt.Sprintf("The %s conflicts with an existing record", what)
	default:
		status, msg = http.StatusInternalServerError, "An unexpected error occurred"
		h.Logger.Error("request failed",
			"what", what,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	if middlewares.IsAPIRequest(r) {
		switch status {
		case http.StatusUnprocessableEntity:
			config.RespondValidationError(w, fe)
		case http.StatusBadRequest:
			details := ""
			if reqErr.Err != nil {
				details = reqErr.Err.Error()
			}
			config.RespondBadRequest(w, msg, details)
		case http.StatusNotFound:
			config.RespondNotFound(w, msg)
		case http.StatusConflict:
			config.RespondConflict(w, msg, err.Error())
		default:
			config.RespondInternalError(w, err, nil)
		}
		return
	}

	flash := views.Flash{Kind: views.FlashError, Message: msg}
	if fe != nil {
		flash.Fields = fe
	}
	h.SetFlash(r.Context(), middlewares.GetSessionIDFromContext(r), flash)
	http.Redirect(w, r, ReturnTo(r), http.StatusSeeOther)
}
