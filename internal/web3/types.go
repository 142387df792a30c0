package web3

import "context"

// ChainSnapshot represents summarized network metadata recorded next to a proof.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// Anchor returns the chain position a verified session is stamped with.
type Anchor interface {
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
}

// Client is an Anchor that holds network resources.
type Client interface {
	Anchor
	Close()
}
