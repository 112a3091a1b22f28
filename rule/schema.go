package rule

import "encoding/json"

// SchemaID is the $id published with the Universal Rule schema.
const SchemaID = "https://github.com/pevans/booksource/schema/universal-rule.json"

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func boolean(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func object(description string, properties map[string]any) map[string]any {
	return map[string]any{
		"type":        "object",
		"description": description,
		"properties":  properties,
	}
}

// Schema returns the JSON Schema (draft-07) describing UniversalRule, for
// editor tooling. A fresh map is built on each call.
func Schema() map[string]any {
	contentTypes := make([]string, 0, len(ContentTypes))
	for _, ct := range ContentTypes {
		contentTypes = append(contentTypes, string(ct))
	}

	return map[string]any{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"$id":         SchemaID,
		"title":       "UniversalRule",
		"description": "Canonical book source rule shared by the any-reader and Legado converters",
		"type":        "object",
		"required":    []string{"id", "name", "host", "contentType"},
		"properties": map[string]any{
			"id":      str("Unique rule identifier"),
			"name":    str("Display name"),
			"host":    str("Site origin, e.g. https://example.com"),
			"icon":    str("Icon URL"),
			"author":  str("Rule author"),
			"group":   str("Group label"),
			"sort":    map[string]any{"type": "integer", "description": "Sort weight, higher first"},
			"enabled": boolean("Whether the rule is enabled"),
			"comment": str("Free-form notes"),
			"jsLib":   str("Shared script library"),
			"contentType": map[string]any{
				"type":        "string",
				"description": "What the source serves",
				"enum":        contentTypes,
			},
			"userAgent": str("Custom User-Agent"),
			"headers": map[string]any{
				"type":                 "object",
				"description":          "Custom request headers",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"loadJs":   str("Global script run on page load"),
			"search":   map[string]any{"$ref": "#/$defs/searchRule"},
			"detail":   map[string]any{"$ref": "#/$defs/detailRule"},
			"chapter":  map[string]any{"$ref": "#/$defs/chapterRule"},
			"discover": map[string]any{"$ref": "#/$defs/discoverRule"},
			"content":  map[string]any{"$ref": "#/$defs/contentRule"},
			"login":    map[string]any{"$ref": "#/$defs/loginRule"},
			"_meta":    map[string]any{"$ref": "#/$defs/ruleMeta"},
		},
		"$defs": map[string]any{
			"searchRule": object("Search page", map[string]any{
				"enabled":       map[string]any{"type": "boolean", "description": "Whether search is enabled", "default": true},
				"url":           str("Search URL template; {{keyword}} is the query"),
				"list":          str("Result list expression"),
				"name":          str("Title expression"),
				"cover":         str("Cover image expression"),
				"author":        str("Author expression"),
				"description":   str("Summary expression"),
				"latestChapter": str("Latest chapter expression"),
				"wordCount":     str("Word count expression"),
				"tags":          str("Tag/category expression"),
				"result":        str("Result URL expression"),
			}),
			"detailRule": object("Book detail page", map[string]any{
				"enabled":       boolean("Whether the detail page is used"),
				"url":           str("Detail page URL"),
				"init":          str("Pre-processing expression"),
				"name":          str("Title expression"),
				"author":        str("Author expression"),
				"cover":         str("Cover expression"),
				"description":   str("Summary expression"),
				"latestChapter": str("Latest chapter expression"),
				"wordCount":     str("Word count expression"),
				"tags":          str("Category expression"),
				"tocUrl":        str("Table of contents URL expression"),
				"canRename":     boolean("Whether title and author may be edited"),
			}),
			"chapterRule": object("Table of contents", map[string]any{
				"url":     str("Chapter list URL"),
				"list":    str("Chapter list expression"),
				"name":    str("Chapter name expression"),
				"cover":   str("Chapter cover expression"),
				"time":    str("Update time expression"),
				"result":  str("Chapter URL expression"),
				"nextUrl": str("Next page of the table of contents"),
				"isVip":   str("VIP marker expression"),
				"isPay":   str("Paid marker expression"),
				"multiRoads": object("Mirror configuration", map[string]any{
					"enabled":  boolean("Whether mirrors are enabled"),
					"roads":    str("Mirror list expression"),
					"roadName": str("Mirror name expression"),
				}),
			}),
			"discoverRule": object("Category/explore pages", map[string]any{
				"enabled":       boolean("Whether discover is enabled"),
				"url":           str("Discover URL or category list"),
				"list":          str("Result list expression"),
				"name":          str("Name expression"),
				"cover":         str("Cover expression"),
				"author":        str("Author expression"),
				"description":   str("Description expression"),
				"tags":          str("Tag expression"),
				"latestChapter": str("Latest chapter expression"),
				"wordCount":     str("Word count expression"),
				"result":        str("Result URL expression"),
				"nextUrl":       str("Next page URL"),
			}),
			"contentRule": object("Chapter body page", map[string]any{
				"url":         str("Body page URL"),
				"items":       str("Body expression"),
				"nextUrl":     str("Next body page URL"),
				"decoder":     str("Body decoder script"),
				"payAction":   str("Purchase action"),
				"sourceRegex": str("Resource regex"),
				"replaceRules": map[string]any{
					"type":        "array",
					"description": "Body cleanup substitutions",
					"items": object("Substitution", map[string]any{
						"pattern":     str("Match pattern"),
						"replacement": str("Replacement text"),
						"isRegex":     boolean("Whether pattern is a regular expression"),
					}),
				},
			}),
			"loginRule": object("Login", map[string]any{
				"url":     str("Login URL"),
				"checkJs": str("Login check script"),
			}),
			"ruleMeta": object("Rule metadata", map[string]any{
				"sourceFormat": map[string]any{"type": "string", "description": "Document format", "enum": []string{string(FormatUniversal)}},
				"originFormat": map[string]any{"type": "string", "description": "Dialect the rule was converted from", "enum": []string{string(FormatAnyReader), string(FormatLegado), string(FormatUniversal)}},
				"version":      str("Rule version"),
				"createdAt":    map[string]any{"type": "integer", "description": "Creation time (Unix ms)"},
				"updatedAt":    map[string]any{"type": "integer", "description": "Update time (Unix ms)"},
			}),
		},
	}
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
