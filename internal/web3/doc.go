// Package web3 defines the chain snapshot used to anchor verified sessions to
// a point in an EVM chain's history. Implementations live in sub-packages.
package web3
