//go:build btpsnodebug

package debug

// zonesCompiled disables Msg and DumpZone.
const zonesCompiled = false
