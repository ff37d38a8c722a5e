//go:build !btpsnodebug

package debug

// zonesCompiled enables Msg and DumpZone.
const zonesCompiled = true
