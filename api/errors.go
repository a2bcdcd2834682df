package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/vagas-engine/vagas"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind vagas.Kind) int {
	switch kind {
	case vagas.KindValidation,
		vagas.KindInvalidQuantity,
		vagas.KindMultipleEstablishments,
		vagas.KindUnbalancedChange,
		vagas.KindMismatchedRegion,
		vagas.KindForeignCourse:
		return http.StatusBadRequest
	case vagas.KindNotFound:
		return http.StatusNotFound
	case vagas.KindCeilingExceeded,
		vagas.KindNoRequestedBalance,
		vagas.KindDecreaseExceedsBalance:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes err classified by kind. Internal errors do not leak
// their cause.
func writeError(w http.ResponseWriter, err error) {
	kind := vagas.KindOf(err)
	resp := ErrorResponse{OK: false, Error: err.Error(), Kind: string(kind)}
	if kind == vagas.KindInternal {
		resp.Error = "internal error"
		if errors.Is(err, vagas.ErrConcurrentModification) {
			resp.Error = "concurrent modification, please retry"
		}
	}
	writeJSON(w, statusFor(kind), resp)
}

// writeBadRequest reports a body that could not be decoded at all.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{OK: false, Error: message, Kind: string(vagas.KindValidation)})
}
