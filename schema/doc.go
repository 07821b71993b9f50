// Package schema maps entity kinds onto the single table.
//
// Primary keys:
//
//	user/{userId}                        profile
//	user/{userId}                        deleted
//	user/{followedId}                    follower/{followerId}/firstStory
//	post/{postId}                        -
//	post/{postId}                        image
//	post/{postId}                        feed/{userId}
//	{itemPK}                             flag/{userId}
//	{itemPK}                             view/{userId}
//	comment/{commentId}                  -
//	album/{albumId}                      -
//	card/{cardId}                        -
//	chat/{chatId}                        -
//	chat/{chatId}                        member/{userId}
//	chatMessage/{messageId}              -
//	directChat/{lowUserId}/{highUserId}  -
//	following/{followerId}/{followedId}  -
//	block/{blockerId}/{blockedId}        -
//	like/{userId}/{postId}               -
//	trending/{itemId}                    -
//	appStoreSub/{originalTransactionId}  -
//	processed/{eventId}                  -
//
// Secondary index partitions are built by the *PK functions in index.go.
package schema
