package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/microcommerce-backend/api/validators"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
)

// readCappedBody buffers at most validators.MaxBodyBytes of the request body and
// restores it for the next handler.
func readCappedBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, nil
}
