/*
Package bus is the part of a host message bus which transports and
extensions configure: the collection of registered transports, the
extensions which have been included, and publishing routes from message
types to queue addresses.

	opts := bus.NewOptions()
	opts.Transports().Add(transport)
	opts.PublishMessage("OrderPlaced").To(uri)
	uris := opts.RoutesFor("OrderPlaced")
*/
package bus
