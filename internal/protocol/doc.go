// Package protocol implements the messages exchanged between the rkvm
// server and client.
//
// A connection carries a stream of CBOR data items (RFC 8949) using Core
// Deterministic Encoding. After TLS is established the exchange is:
//
//	client -> server  Version
//	server -> client  Version
//	server -> client  AuthChallenge
//	client -> server  AuthResponse
//	server -> client  AuthStatus
//	server -> client  Update ...      (steady state)
//	client -> server  Pong            (once per Ping)
//
// Each Update is framed as an envelope carrying its kind and the encoded
// variant body. A Conn owns the single encoder and decoder of a stream;
// the decoder reads ahead, so never wrap the same stream twice.
package protocol
