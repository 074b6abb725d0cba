package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/log"
)

// view returns the dashboard of the session account
// GET /dashboard
func (a *API) view(w http.ResponseWriter, r *http.Request) {
	v, err := a.dashboard.Refresh(r.Context())
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, v)
}

// addMember joins the session account, or registers the member in the body
// POST /members
func (a *API) addMember(w http.ResponseWriter, r *http.Request) {
	req := &AddMember{}
	if r.ContentLength != 0 && !decodeBody(w, r, req) {
		return
	}
	var err error
	if req.Address == nil {
		err = a.dashboard.Join(r.Context())
	} else {
		err = a.dashboard.AddMember(r.Context(), *req.Address)
	}
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// newProposal creates a proposal
// POST /proposals
func (a *API) newProposal(w http.ResponseWriter, r *http.Request) {
	req := &NewProposal{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.VotingDuration > uint64(math.MaxInt64/int64(time.Second)) {
		ErrInvalidRequest.Withf("voting duration of %d seconds is out of range", req.VotingDuration).Write(w)
		return
	}
	id, err := a.dashboard.CreateProposal(r.Context(), req.Description, time.Duration(req.VotingDuration)*time.Second)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	log.Infow("new proposal", "proposalId", id)
	httpWriteJSON(w, &ProposalCreated{ID: id})
}

// proposal returns a proposal
// GET /proposals/{proposalId}
func (a *API) proposal(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	p, err := a.dashboard.Proposal(r.Context(), id)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, p)
}

// vote casts an encrypted ballot from the session account
// POST /proposals/{proposalId}/votes
func (a *API) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	req := &Vote{}
	if !decodeBody(w, r, req) {
		return
	}
	p, err := a.dashboard.Vote(r.Context(), id, req.Ballot)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, p)
}

// decrypt resolves the tally of a proposal for the session account
// POST /proposals/{proposalId}/decrypt
func (a *API) decrypt(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	t, err := a.dashboard.Decrypt(r.Context(), id)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, t)
}

// execute closes a proposal
// POST /proposals/{proposalId}/execute
func (a *API) execute(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	t, err := a.dashboard.Execute(r.Context(), id)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, t)
}

// events lists the contract events
// GET /events?from=<index>
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	var from uint64
	if s := r.URL.Query().Get("from"); s != "" {
		var err error
		if from, err = strconv.ParseUint(s, 10, 64); err != nil {
			ErrMalformedParam.Withf("from: %v", err).Write(w)
			return
		}
	}
	events, err := a.dashboard.Connection().Events(r.Context(), from)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	next := from
	if n := len(events); n > 0 {
		next = events[n-1].Index + 1
	}
	httpWriteJSON(w, &Events{Events: events, Next: next})
}

// switchAccount connects the wallet in the body
// POST /session/account
func (a *API) switchAccount(w http.ResponseWriter, r *http.Request) {
	req := &SwitchAccount{}
	if !decodeBody(w, r, req) {
		return
	}
	signer := ethereum.NewSignKeys()
	if err := signer.AddHexKey(req.PrivateKey.String()); err != nil {
		ErrMalformedBody.Withf("invalid private key: %v", err).Write(w)
		return
	}
	if err := a.dashboard.SwitchAccount(r.Context(), signer); err != nil {
		errorFor(err).Write(w)
		return
	}
	a.view(w, r)
}

// switchNetwork connects the session wallet to another chain
// POST /session/network
func (a *API) switchNetwork(w http.ResponseWriter, r *http.Request) {
	req := &SwitchNetwork{}
	if !decodeBody(w, r, req) {
		return
	}
	if err := a.dashboard.SwitchNetwork(r.Context(), req.ChainID); err != nil {
		errorFor(err).Write(w)
		return
	}
	a.view(w, r)
}

// signOut drops the decryption signatures of the session account
// POST /session/signout
func (a *API) signOut(w http.ResponseWriter, r *http.Request) {
	if err := a.dashboard.SignOut(); err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteOK(w)
}
