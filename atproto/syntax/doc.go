/*
Package syntax holds string types for the atproto identifiers the bot handles: DIDs, NSIDs, record keys, repo paths and AT-URIs.

Values should be constructed with the Parse* functions, which validate syntax, rather than by casting raw strings.
*/
package syntax
