// Package websocket pushes dashboard events to browsers. A Hub fans
// messages of the form {"type", "data", "timestamp"} out to every Client;
// services announce statistics writes and generated reports through it so
// open pages can refresh.
package websocket
