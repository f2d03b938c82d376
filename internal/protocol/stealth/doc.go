// Package stealth derives one-time recipient addresses so that messages on
// a public channel cannot be linked to a long-term identity.
//
// The sender computes ECDH between a fresh ephemeral key and the
// recipient's viewing key, reduces a keyed digest of the point to a tweak
// scalar, and publishes to address(spendingPub + tweak·G) together with the
// ephemeral key and a 1-byte view tag. The recipient scans the channel by
// recomputing the ECDH for each event's ephemeral key: a tag mismatch
// rejects the event after one byte comparison, a tag match is confirmed
// against the full address, and only then is decryption attempted.
package stealth
