// Package notification turns agent and stage status changes into plugin
// notifications.
//
// A Service receives a domain snapshot, builds the payload for its kind,
// asks the plugin registry which plugins subscribe to that kind and posts one
// Message per plugin to the delivery queue, in registry order.
//
// Key properties:
//   - Payload building is pure apart from the two read-only pipeline lookups
//     used for stage payloads.
//   - All messages of one call share the same payload value.
//   - The Service keeps no state between calls; concurrent calls need no
//     coordination.
//   - Posting only hands a message to the queue. Delivery, retries and delay
//     scheduling belong to the queue.
//
// Lookup failures:
//   - A lookup that finds nothing leaves the payload field empty.
//   - A lookup that errors aborts the call before anything is posted, unless
//     the Service runs with LookupOmit, in which case the fault is logged and
//     the field left empty.
package notification
