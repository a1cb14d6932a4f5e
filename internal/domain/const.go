package domain

const (
	// Gateway constants
	DEFAULT_IPFS_GATEWAY    = "https://gateway.pinata.cloud"
	DEFAULT_ARWEAVE_GATEWAY = "https://arweave.net"

	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// StagingAddress custodies the incubated tokens until the new token is minted off-chain
	StagingAddress = "0x62C72f544e414975CE8b9A8668F97750eb77DbA9"

	// SelectionSize is the exact number of tokens an incubation consumes
	SelectionSize = 3

	// NotificationRecipient receives the incubation emails
	NotificationRecipient = "admin@cayc.io"

	// NotificationEndpoint is the hosted mail relay the incubator posts to
	NotificationEndpoint = "https://cayc-incubator-email.vercel.app/api/send-email.js"
)
