package nntp

import (
	"errors"
	"fmt"

	"github.com/papercut-news/go-papercut/internal/storage"
)

// handleArticlePart serves ARTICLE, HEAD, BODY and STAT. All four resolve
// their argument the same way and differ only in which part of the article
// follows the status line.
func (c *ClientConnection) handleArticlePart(verb string, args []string) error {
	ref, err := c.resolveArticleRef(args)
	if ref == nil {
		return err
	}

	switch verb {
	case "STAT":
		return c.sendResponse(223, "%d %s article retrieved - request text separately",
			ref.number, ref.messageID())

	case "HEAD":
		head, err := ref.backend.Head(ref.group, ref.number)
		if err != nil {
			if errors.Is(err, storage.ErrNoSuchArticle) {
				return c.sendResponse(423, "no such article in this group")
			}
			return c.programError(err)
		}
		c.server.Metrics.ArticleServed(articleSize(head))
		status := fmt.Sprintf("221 %d %s article retrieved - head follows", ref.number, ref.messageID())
		return c.sendMultiline(status, head)

	case "BODY":
		body, err := ref.backend.Body(ref.group, ref.number)
		if err != nil {
			if errors.Is(err, storage.ErrNoSuchArticle) {
				return c.sendResponse(423, "no such article in this group")
			}
			return c.programError(err)
		}
		c.server.Metrics.ArticleServed(articleSize(body))
		status := fmt.Sprintf("222 %d %s article retrieved - body follows", ref.number, ref.messageID())
		return c.sendMultiline(status, body)

	default: // ARTICLE
		article, err := ref.backend.Article(ref.group, ref.number)
		if err != nil {
			if errors.Is(err, storage.ErrNoSuchArticle) {
				return c.sendResponse(423, "no such article in this group")
			}
			return c.programError(err)
		}
		lines := make([]string, 0, len(article.Head)+1+len(article.Body))
		lines = append(lines, article.Head...)
		lines = append(lines, "")
		lines = append(lines, article.Body...)
		c.server.Metrics.ArticleServed(articleSize(lines))
		status := fmt.Sprintf("220 %d %s All of the article follows", ref.number, ref.messageID())
		return c.sendMultiline(status, lines)
	}
}
