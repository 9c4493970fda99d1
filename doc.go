// Package customdata builds validated data objects from untyped payloads
// and routes them to handler methods.
//
// - A data type embeds Base and declares its Schema with ExpectedProperties
// - Make audits a payload against the schema, materializes nested data objects and runs Boot
// - Errors unwrap to the Err* kinds and convert to Issues (JSON Pointer, code, message)
// - Key and Digest identify an object by its validated content
// - Dispatcher resolves a handler method's input type and invokes it, or defers it to a Queue
//
// Design policy:
// - Keep only public APIs in the root package; conditions live in rules/, the
//   in-process queue in queue/, Prometheus metrics in metrics/, HTTP glue in middleware/
//   and the CLI in cmd/customdata.
// - Construction options travel on context.Context (WithMaxDepth, WithObserver, WithService).
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	type UserData struct{ customdata.Base }
//
//	func (*UserData) ExpectedProperties() customdata.Schema {
//		return customdata.Schema{
//			customdata.Expect("name", customdata.String()),
//			customdata.Expect("age?", customdata.Numeric()),
//			customdata.Expect("tags?", customdata.ArrayOf(customdata.TypeString).Default([]any{})),
//		}
//	}
//
//	user, err := customdata.Make[UserData](ctx, map[string]any{"name": "Ann"})
//	key, err := user.Key()
package customdata
