// Package secrets allows communication with [org.freedesktop.Secret].
// Program that provide this API include Gnome Keyring, KDE Wallet, and keepassxc.
//
// It is used to lock the user's keyrings together with the session.
//
// [org.freedesktop.Secret]: https://specifications.freedesktop.org/secret-service-spec/latest/
package secrets
