package launcher

import (
	"os"
	"sort"
	"strings"
)

// Env represents environment overrides for a launched process
type Env map[string]string

const busAddressKey = "DBUS_SESSION_BUS_ADDRESS"

// legacyBusKeys are cleared rather than inherited from the host
var legacyBusKeys = []string{
	"DBUS_SESSION_BUS_PID",
	"DBUS_SESSION_BUS_WINDOWID",
	"DBUS_STARTER_ADDRESS",
	"DBUS_STARTER_BUS_TYPE",
}

// BusEnv returns the session bus environment for address
func BusEnv(address string) Env {
	ret := Env{busAddressKey: address}
	for _, key := range legacyBusKeys {
		ret[key] = ""
	}
	return ret
}

// Merge returns a copy of e overridden by other
func (e Env) Merge(other Env) Env {
	ret := make(Env, len(e)+len(other))
	for k, v := range e {
		ret[k] = v
	}
	for k, v := range other {
		ret[k] = v
	}
	return ret
}

// Environ returns base with every key of e replaced
func (e Env) Environ(base []string) []string {
	ret := make([]string, 0, len(base)+len(e))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := e[key]; ok {
			continue
		}
		ret = append(ret, kv)
	}
	return append(ret, e.Pairs()...)
}

// Pairs returns sorted KEY=VALUE entries
func (e Env) Pairs() []string {
	ret := make([]string, 0, len(e))
	for k, v := range e {
		ret = append(ret, k+"="+v)
	}
	sort.Strings(ret)
	return ret
}

// hostEnviron returns the current process environment with e applied
func (e Env) hostEnviron() []string {
	return e.Environ(os.Environ())
}
