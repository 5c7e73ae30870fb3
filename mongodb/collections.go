package mongodb

const (
	StatesCollection      = "oauth_states"      // In-flight authorization attempts
	CredentialsCollection = "oauth_credentials" // Per (user, provider) secrets
	RateLimitsCollection  = "rate_limits"       // Per (user, action) request logs
	AdAccountsCollection  = "ad_accounts"       // Discovered advertising accounts
	LeadsCollection       = "leads"             // Captured marketing emails
)

// maxBatchOps is the hard ceiling on mutations per bulk commit. Larger
// update sets must be chunked, never sent in one write.
const maxBatchOps = 500
