package bus

import (
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Transport is implemented by every transport which can be registered
type Transport interface {
	// Protocol is the scheme of the addresses the transport serves
	Protocol() string
}

// Transports is the set of transports registered with the host. It is
// passed explicitly through configuration, rather than held globally.
type Transports struct {
	sync.RWMutex
	list []Transport
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Add registers a transport. Adding the same transport twice has no effect.
func (t *Transports) Add(transport Transport) {
	if transport == nil {
		return
	}
	t.Lock()
	defer t.Unlock()
	for _, existing := range t.list {
		if existing == transport {
			return
		}
	}
	t.list = append(t.list, transport)
}

// All returns the registered transports in registration order
func (t *Transports) All() []Transport {
	t.RLock()
	defer t.RUnlock()
	result := make([]Transport, len(t.list))
	copy(result, t.list)
	return result
}

// ForProtocol returns the transports which serve a scheme
func (t *Transports) ForProtocol(protocol string) []Transport {
	var result []Transport
	for _, transport := range t.All() {
		if transport.Protocol() == protocol {
			result = append(result, transport)
		}
	}
	return result
}
