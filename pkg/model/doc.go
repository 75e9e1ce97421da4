// Package model maintains the live device and property state graph of
// an INDI connection.
//
// The graph mirrors what the server has announced: a table of devices,
// each holding a set of property vectors, each vector holding named
// elements of one kind (number, text, switch, light, or BLOB). The
// graph is mutated exclusively through Model.Apply, which interprets
// incoming wire commands:
//
//   - def*Vector declares or wholesale-redefines a property
//   - set*Vector and new*Vector merge element values into an existing
//     property
//   - delProperty removes a property, or a whole device
//   - message appends to a device's (or the connection's) message log
//
// Every observable node is wrapped in a notify.Value: each property
// vector has its own handle, each device publishes its property-name
// list, and the model publishes its device-name list. Consumers
// subscribe at whatever granularity they care about, and updates to
// unrelated devices never contend.
package model
