// Package halsim is an in-memory soft AP driver for development and
// demos. It honors the hal.Controller contract, keeps a model of
// interfaces, instances and connected clients, and exposes scripting
// hooks (client connects, instance failures, link flaps, injected
// command failures) so a full session lifecycle can be exercised
// without hardware.
package halsim
