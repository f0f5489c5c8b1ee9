package model

import "strings"

// RewriteErrorPrefix marks post text produced by a failed rewrite.
const RewriteErrorPrefix = "[GPT Error]: "

// RewriteFailureText renders reason as visible post text.
func RewriteFailureText(reason string) string {
	return RewriteErrorPrefix + reason
}

func IsRewriteFailure(text string) bool {
	return strings.HasPrefix(text, RewriteErrorPrefix)
}
