// Package harness runs YAML scenarios against a view reconciler.
//
// A scenario drives a reconciler wired to a real identity session and a
// scripted catalog. The harness processes events synchronously after every
// step, so the trace of catalog subscribe/cancel calls and published views
// is fully deterministic and can be compared against golden files.
//
// # Scenario Format
//
//	name: sign_in_switches_to_admin
//	description: "Signing in replaces the student subscription"
//	users:
//	  - email: admin@campus.edu
//	    password: secret
//	products:
//	  - { id: p-a, name: Mug, price: 8, description: Ceramic, in_stock: false }
//	deliver_on_subscribe: true
//	steps:
//	  - action: sign_in
//	    email: admin@campus.edu
//	    password: secret
//	    expect:
//	      mode: admin_dashboard
//	      authenticated: true
//	      products: [p-a]
//	assertions:
//	  - type: trace_order
//	    events: ["cancel:1", "subscribe:2"]
//	  - type: subscriptions
//	    max_active: 1
//
// # Steps
//
//   - sign_in, sign_out: go through the command dispatcher and identity session
//   - request_mode, reload: reconciler intents
//   - deliver, fail: push a snapshot or error to subscription sub (0 is the latest)
//   - reject_next: make the next catalog Subscribe call fail
//   - add_product, set_stock, toggle_stock, delete_product: catalog commands
//
// Catalog commands never reach the view on their own: a following deliver
// step without products sends the catalog's current contents.
//
// # Trace Keys
//
// Assertions name trace events by key: "step:<action>", "subscribe:<n>",
// "cancel:<n>" and "view:<mode>:<status>".
package harness
