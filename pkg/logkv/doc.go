// Package logkv provides a client for a logkv key-value server over TCP.
//
// Example:
//
//	client, err := logkv.Connect(logkv.WithPort(4000))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Set("foo", "bar")
//	val, found, err := client.Get("foo")
package logkv
