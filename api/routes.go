package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"

	// GatewayInfoEndpoint returns the co-processor parameters clients need
	// to encrypt inputs and build decryption permits
	GatewayInfoEndpoint = "/gateway/info"
	// GatewayUserDecryptEndpoint re-encrypts plaintexts to a user key after
	// checking the signed decryption permit
	GatewayUserDecryptEndpoint = "/gateway/user-decrypt"

	// DashboardEndpoint returns the dashboard view of the session account
	DashboardEndpoint = "/dashboard"
	// MembersEndpoint joins the DAO, or adds the member in the body
	MembersEndpoint = "/members"
	// ProposalsEndpoint creates a new proposal
	ProposalsEndpoint = "/proposals"
	// ProposalEndpoint returns a proposal as seen by the session account
	ProposalURLParam = "proposalId"
	ProposalEndpoint = "/proposals/{" + ProposalURLParam + "}"
	// VotesEndpoint casts an encrypted vote on a proposal
	VotesEndpoint = ProposalEndpoint + "/votes"
	// DecryptEndpoint resolves the tally of a proposal for the session account
	DecryptEndpoint = ProposalEndpoint + "/decrypt"
	// ExecuteEndpoint closes a proposal and publishes its tally
	ExecuteEndpoint = ProposalEndpoint + "/execute"

	// SessionAccountEndpoint switches the session wallet
	SessionAccountEndpoint = "/session/account"
	// SessionNetworkEndpoint switches the session network
	SessionNetworkEndpoint = "/session/network"
	// SessionSignOutEndpoint drops the decryption signatures of the session account
	SessionSignOutEndpoint = "/session/signout"

	// EventsEndpoint lists the contract events, from the index given by the
	// "from" query parameter
	EventsEndpoint = "/events"
)
