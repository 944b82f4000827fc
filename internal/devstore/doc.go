// Package devstore is a small in-process RESP2 server implementing the store
// commands meshbus relies on.
//
// It backs the package tests and the meshbus-devstore binary. Supported
// commands: PING, ECHO, AUTH, SELECT, QUIT, GET, SET (EX/PX/NX/XX), SETEX,
// DEL, EXISTS, EXPIRE, TTL, PTTL, PERSIST, HSET, HGET, HDEL, PUBLISH,
// SUBSCRIBE, UNSUBSCRIBE, DBSIZE, FLUSHDB.
//
// Keys expire lazily on access and through a periodic sweep. Nothing is
// persisted.
package devstore
