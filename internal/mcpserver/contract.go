package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// agent consumers should follow when calling create_note or update_note.
const NoteFormatContract = `# Note Format Contract

Every note stored in mnemo is a Markdown file with a YAML frontmatter block.

## Structure

` + "```" + `markdown
---
id: 20260115T090000000000Z
title: Human-readable title
category: Resources
tags:
  - tag-one
  - tag-two
project: optional-project-slug
created: 2026-01-15T09:00:00Z
updated: 2026-01-15T09:00:00Z
links:
  - 20260115T091500000000Z
---

Body text in standard Markdown.

Use [[uid]] or [[uid|display text]] to link to another note by its id.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory** and must open with ` + "`" + `---` + "`" + ` as the first
   line of the file (no leading blank lines).
2. **` + "`" + `id` + "`" + `** is a 22-character timestamp UID (` + "`" + `YYYYMMDDTHHMMSS` + "`" + `, six
   microsecond digits, ` + "`" + `Z` + "`" + `) assigned once at creation and never changes.
3. **` + "`" + `category` + "`" + `** is one of ` + "`" + `Projects` + "`" + `, ` + "`" + `Areas` + "`" + `, ` + "`" + `Resources` + "`" + `, ` + "`" + `Archives` + "`" + `
   (the PARA method) and determines the note's directory.
4. **` + "`" + `tags` + "`" + `** are lowercase, kebab-case.
5. **` + "`" + `links` + "`" + `** lists the ids of notes this note points to. It is kept in
   sync automatically from the ` + "`" + `[[uid]]` + "`" + ` references found in the body; you do
   not need to edit it by hand.
6. **Wikilinks** in the body use double brackets around a target id:
   ` + "`" + `[[20260115T091500000000Z]]` + "`" + ` or with an alias, ` + "`" + `[[20260115T091500000000Z|display text]]` + "`" + `.
7. **Timestamps** are RFC 3339 in UTC.
8. **Encoding** is UTF-8 with a trailing newline.

## Tool usage

- Use ` + "`" + `create_note` + "`" + ` with a title, body content, and category (project optional)
  to create a new note; mnemo assigns the id and file path.
- Use ` + "`" + `update_note` + "`" + ` to change title, content, project, or tags on an existing
  note by id; links are recomputed from the new body automatically.
- Use ` + "`" + `search_memory` + "`" + ` for full-text and link-weighted ranked search, or
  ` + "`" + `explore_links` + "`" + ` to walk a note's backlinks, outbound links, and connected
  neighborhood.
- Use ` + "`" + `session_context` + "`" + `, ` + "`" + `associative_search` + "`" + `, and ` + "`" + `reflect_session` + "`" + ` to keep
  a running memory of recently touched notes within one agent session and
  bias search results toward what that session has already been looking at.
`
