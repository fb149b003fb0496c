package collectors

import (
	"fmt"
	"strings"
)

type hresultInfo struct {
	name    string
	message string
}

// wuaHResults names the HRESULTs the update searcher returns most often.
var wuaHResults = map[uint32]hresultInfo{
	0x8024000B: {"WU_E_CALL_CANCELLED", "operation was cancelled"},
	0x8024000E: {"WU_E_OPERATIONINPROGRESS", "another conflicting operation was in progress"},
	0x80240016: {"WU_E_INSTALL_NOT_ALLOWED", "another install is in progress or a reboot is pending"},
	0x80240004: {"WU_E_NOT_INITIALIZED", "Windows Update Agent is not initialized"},
	0x80240024: {"WU_E_NO_SERVICE", "Windows Update service could not be contacted"},
	0x8024002E: {"WU_E_WU_DISABLED", "non-managed server access is not allowed"},
	0x80240044: {"WU_E_PER_MACHINE_UPDATE_ACCESS_DENIED", "only administrators can query per-machine updates"},
	0x80070005: {"E_ACCESSDENIED", "access denied, run as SYSTEM or an administrator"},
	0x8007000E: {"E_OUTOFMEMORY", "not enough memory to complete the operation"},
	0x80072EE2: {"WININET_E_TIMEOUT", "the operation timed out"},
	0x80072EFD: {"WININET_E_CONNECTION_RESET", "the connection with the server was reset"},
	0x80072EFE: {"WININET_E_CANNOT_CONNECT", "could not connect to the update server"},
}

// formatHResult renders a WUA HRESULT as "0x8024000E: NAME: message", or
// "0x...: unknown HRESULT" for codes outside the table.
func formatHResult(hr uint32) string {
	if info, ok := wuaHResults[hr]; ok {
		return fmt.Sprintf("0x%08X: %s: %s", hr, info.name, info.message)
	}
	return fmt.Sprintf("0x%08X: unknown HRESULT", hr)
}

func isOperationInProgress(hr uint32) bool {
	return hr == 0x8024000E || hr == 0x80240016
}

// isOperationInProgressError reports whether a COM error string carries
// one of the Windows Update Agent "busy" codes.
func isOperationInProgressError(errStr string) bool {
	return strings.Contains(errStr, "8024000E") || strings.Contains(errStr, "80240016")
}
