package bus

import (
	"net/url"
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Extension configures the host options when it is included
type Extension interface {
	Configure(*Options) error
}

// Options is the configuration of the host bus
type Options struct {
	sync.RWMutex
	transports *Transports
	extensions []Extension
	routes     []Route
}

// Route sends messages of a type, or all messages when the type is empty,
// to an address
type Route struct {
	MessageType string
	URI         *url.URL
}

// PublishingExpression adds routes for a set of messages
type PublishingExpression struct {
	parent      *Options
	messageType string
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewOptions() *Options {
	return &Options{
		transports: new(Transports),
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - OPTIONS

func (o *Options) Transports() *Transports {
	return o.transports
}

// Include configures an extension and remembers it. If Configure returns
// an error, the extension is not included.
func (o *Options) Include(ext Extension) error {
	if err := ext.Configure(o); err != nil {
		return err
	}
	o.Lock()
	defer o.Unlock()
	o.extensions = append(o.extensions, ext)
	return nil
}

// Extensions returns the included extensions in order
func (o *Options) Extensions() []Extension {
	o.RLock()
	defer o.RUnlock()
	result := make([]Extension, len(o.extensions))
	copy(result, o.extensions)
	return result
}

// Publish starts a route for all messages
func (o *Options) Publish() *PublishingExpression {
	return &PublishingExpression{parent: o}
}

// PublishMessage starts a route for one message type
func (o *Options) PublishMessage(messageType string) *PublishingExpression {
	return &PublishingExpression{parent: o, messageType: messageType}
}

// Routes returns all routes in the order they were added
func (o *Options) Routes() []Route {
	o.RLock()
	defer o.RUnlock()
	result := make([]Route, len(o.routes))
	copy(result, o.routes)
	return result
}

// RoutesFor returns the distinct addresses for a message type, including
// the routes for all messages
func (o *Options) RoutesFor(messageType string) []*url.URL {
	o.RLock()
	defer o.RUnlock()
	var result []*url.URL
	seen := make(map[string]bool)
	for _, route := range o.routes {
		if route.MessageType != "" && route.MessageType != messageType {
			continue
		}
		if key := route.URI.String(); !seen[key] {
			seen[key] = true
			result = append(result, route.URI)
		}
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - PUBLISHING EXPRESSION

// Parent returns the options the routes are added to
func (p *PublishingExpression) Parent() *Options {
	return p.parent
}

func (p *PublishingExpression) MessageType() string {
	return p.messageType
}

// To adds a route to an address
func (p *PublishingExpression) To(uri *url.URL) *PublishingExpression {
	if uri == nil {
		return p
	}
	p.parent.Lock()
	defer p.parent.Unlock()
	p.parent.routes = append(p.parent.routes, Route{MessageType: p.messageType, URI: uri})
	return p
}
