// Package abi holds arithmetic helpers shared by the ffi conversion code.
package abi
