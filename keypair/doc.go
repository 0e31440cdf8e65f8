// Package keypair establishes the node's durable network identity.
//
// The identity is a secp256k1 key pair used only to identify the node to its
// peers; it never signs application content. It is stored as a single line
// of hex in private-key.txt inside the data directory. A missing file is the
// only trigger for generating a new key: a file that exists but does not
// decode is reported as an error and left untouched, so an existing identity
// is never silently replaced.
//
// Writing goes through a [SecureFileStore]. On unix platforms the default
// store creates the file, writes it, syncs it and then tightens its mode to
// 0600 on the open descriptor. Elsewhere the tightening step is skipped; the
// file then inherits whatever access the platform grants by default.
package keypair
