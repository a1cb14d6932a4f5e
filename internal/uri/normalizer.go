package uri

import (
	"strings"

	"github.com/cayc/incubator/internal/domain"
)

// Config holds the gateways used to rewrite decentralized storage URIs
type Config struct {
	// IPFSGateway is the HTTP gateway origin, without the /ipfs/ path
	IPFSGateway string
	// ArweaveGateway is the HTTP gateway origin for ar:// URIs
	ArweaveGateway string
}

// Normalizer rewrites ipfs:// and ar:// URIs to HTTP gateway URLs
type Normalizer struct {
	ipfsPrefix    string
	arweavePrefix string
}

// NewNormalizer creates a normalizer, falling back to the default gateways
func NewNormalizer(cfg Config) *Normalizer {
	ipfs := cfg.IPFSGateway
	if ipfs == "" {
		ipfs = domain.DEFAULT_IPFS_GATEWAY
	}
	arweave := cfg.ArweaveGateway
	if arweave == "" {
		arweave = domain.DEFAULT_ARWEAVE_GATEWAY
	}
	return &Normalizer{
		ipfsPrefix:    strings.TrimRight(ipfs, "/") + "/ipfs/",
		arweavePrefix: strings.TrimRight(arweave, "/") + "/",
	}
}

// Normalize returns the gateway URL for a storage URI; every other URI is returned unchanged
func (n *Normalizer) Normalize(uri string) string {
	uri = strings.TrimSpace(uri)

	if path, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		// Some contracts emit ipfs://ipfs/<cid>
		path = strings.TrimPrefix(path, "ipfs/")
		return n.ipfsPrefix + path
	}

	if txID, ok := strings.CutPrefix(uri, "ar://"); ok {
		return n.arweavePrefix + txID
	}

	return uri
}
