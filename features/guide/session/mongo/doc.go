// Package mongo provides a MongoDB-backed implementation of the guide
// session store. Build the low-level client via
// features/guide/session/mongo/clients/mongo and pass it to NewStore so
// sessions survive process restarts and can be resumed from any instance.
package mongo
