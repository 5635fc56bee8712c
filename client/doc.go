/*
Package client is the Go client SDK for the DacSanViet real-time notification
service.

It maintains a single authenticated websocket subscription per user identity
(PushClient, Manager), a client-side cache of the user's notifications kept
consistent between list fetches and asynchronous pushes (Cache), the
read/unread state machine with optimistic, rollback-safe mutations, and the
two presentation surfaces that render the shared cache (BellSurface,
ListSurface).

Typical wiring:

	store := client.NewStoreClient("https://api.example.com", token)
	cache := client.NewCache(store)

	push := client.NewPushClient(client.PushConfig{
		URL:            "wss://api.example.com/ws/notifications",
		OnNotification: cache.UpsertFromPush,
		OnConnect: func() {
			cache.InvalidateAndRefetch(context.Background())
		},
	})
	push.Connect(userID, token)

	bell := client.NewBellSurface(cache, 5)
	list := client.NewListSurface(cache)

Both surfaces observe the same cache; they never fetch or mutate on their own,
so their unread counts and item states cannot drift apart.
*/
package client
