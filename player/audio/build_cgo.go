//go:build !nocgo

package audio

const productionAvailable = true
