package mcp

// Method is the closed set of protocol methods the server understands.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodInitialized
	MethodToolsList
	MethodToolsCall
	MethodPing
)

var methodNames = map[Method]string{
	MethodInitialize:  "initialize",
	MethodInitialized: "notifications/initialized",
	MethodToolsList:   "tools/list",
	MethodToolsCall:   "tools/call",
	MethodPing:        "ping",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for k, v := range methodNames {
		m[v] = k
	}
	return m
}()

// ParseMethod maps a wire method name to a Method, or MethodUnknown.
func ParseMethod(name string) Method {
	return methodsByName[name]
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}
