/*
Package dreambot is the trigger pipeline: it finds posts containing "cc: dreambot" in firehose commits, rebuilds the prompt from the reply thread, and replies with a generated image.

The stages are exposed individually ([ExtractRecord], [ShouldTrigger], [ExtractPrompt], [WalkThread], [ComposeReply]) and wired together by [Bot], whose HandleCommit method is a [firehose.HandleFunc].
*/
package dreambot
