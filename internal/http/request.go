package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// decodeJSON reads one JSON value from the request body into v. Syntax
// errors and wrong types are bad requests; errors raised by field
// decoders, such as an invalid amount, pass through unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: malformed JSON", errBadRequest)
		case errors.As(err, &typeErr):
			return fmt.Errorf("%w: %s has the wrong type", errBadRequest, typeErr.Field)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body too large", errBadRequest)
		default:
			return err
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// pathID returns the {id} wildcard.
func pathID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}
