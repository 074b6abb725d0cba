package api

import (
	"net/http"

	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/log"
)

// gatewayInfo returns the co-processor parameters
// GET /gateway/info
func (a *API) gatewayInfo(w http.ResponseWriter, r *http.Request) {
	info, err := a.gateway.Info(r.Context())
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, info)
}

// userDecrypt serves a user decryption request
// POST /gateway/user-decrypt
func (a *API) userDecrypt(w http.ResponseWriter, r *http.Request) {
	req := &coprocessor.UserDecryptRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	resp, err := a.gateway.UserDecrypt(r.Context(), req)
	if err != nil {
		log.Debugw("user decryption refused", "user", req.User.Hex(), "error", err.Error())
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, resp)
}
