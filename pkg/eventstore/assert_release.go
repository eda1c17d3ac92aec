//go:build !debug

package eventstore

const strictInvariants = false
