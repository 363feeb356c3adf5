/*
Package client is an authenticated XRPC session against an atproto PDS (eg, https://bsky.social).

It covers the handful of Lexicon endpoints the bot needs: reading profiles and post threads, uploading blobs, and creating or deleting records. Sessions are created with password auth ([LoginWithPassword]); expired access tokens are refreshed transparently, once per request.

	c, err := client.LoginWithPassword(ctx, client.LoginConfig{
		Host:       "https://bsky.social",
		Identifier: "dreambot.bsky.social",
		Password:   "app-password",
	})
	profile, err := c.GetProfile(ctx, "did:plc:abc123")
*/
package client
