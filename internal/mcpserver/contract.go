package mcpserver

// DocumentFormatContract describes the document layout, the provenance model
// and the mutation op wire format for LLM consumers.
const DocumentFormatContract = `# Othala Document Format Contract

Othala edits a mod as an overlay over a read-only base game tree. Every
document is a JSON object file; the editor always shows the MERGED view.

## Layout

` + "```" + `
entities/<id>.json          game entities       (manifested)
research/<id>.json          research nodes      (manifested)
uniforms/<id>.json          uniform sets        (not manifested)
textures/*.png|.jpg|.dds    asset files         (referenced by path)
sounds/*.ogg|.wav           asset files         (referenced by path)
localization/<lang>.json    flat key -> text maps
` + "```" + `

Manifested categories carry a ` + "`" + `<category>.manifest` + "`" + ` file at the overlay
root: ` + "`" + `{"ids": ["alpha", "beta"]}` + "`" + `, ids sorted. New overlay files in
manifested categories must be registered (copy_from_base with a new name
does this automatically).

## Provenance

Every property in the merged view carries one of:

- ` + "`" + `inherited` + "`" + `: value comes from the base tree, no overlay contribution.
- ` + "`" + `overridden` + "`" + `: value comes from the overlay (saved to disk).
- ` + "`" + `computed-default` + "`" + `: value synthesized from the schema default; present
  in neither tree.

Objects merge per-member; arrays override WHOLESALE (an overlay array
replaces the base array entirely). Saving writes only the overridden
delta; a document with no overrides writes no overlay file at all.

## Mutation ops

` + "`" + `mutate_document` + "`" + ` takes a JSON array of ops. All ops in one call commit
as a single undoable command.

` + "```" + `json
[
  {"op": "set", "path": "$.speed", "value": 12},
  {"op": "insert-member", "path": "$", "name": "armor", "value": {"front": 80}},
  {"op": "remove-member", "path": "$", "name": "armor"},
  {"op": "insert-element", "path": "$.tags", "index": 0, "value": "fast"},
  {"op": "remove-element", "path": "$.tags", "index": 0}
]
` + "```" + `

Rules:

1. **Paths** are dollar-rooted: ` + "`" + `$` + "`" + ` is the document root,
   ` + "`" + `$.a.b[0]` + "`" + ` descends members and array indices.
2. **set** replaces a scalar. The value must match the schema type and any
   declared enum options; read-only properties reject the edit.
3. **insert-member** adds or overrides an object member. Closed objects
   reject undeclared names. Inserting over an inherited or defaulted slot
   replaces it in place.
4. **remove-member** strips the overlay contribution only: a base-backed
   member REVERTS to its inherited value instead of disappearing, a
   defaulted one reverts to its computed default.
5. **Numbers** are preserved verbatim: send ` + "`" + `1.50` + "`" + ` and the file
   keeps ` + "`" + `1.50` + "`" + `.
6. A rejected op leaves the document byte-identical and emits no event.

## Workflow

1. ` + "`" + `read_document` + "`" + ` to see the merged tree with provenance.
2. ` + "`" + `describe_property` + "`" + ` before editing an unfamiliar property.
3. ` + "`" + `mutate_document` + "`" + ` to edit; ` + "`" + `undo` + "`" + `/` + "`" + `redo` + "`" + ` step history and are
   safe no-ops at the bounds.
4. ` + "`" + `save_document` + "`" + ` to persist the delta.
`
