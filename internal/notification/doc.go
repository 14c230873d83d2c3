// Package notification はユーザーごとの未読通知を集約する。
//
// 通知はポーリングのたびに注文・メッセージ・注文イベント・既読カーソルから
// 計算し直し、保存しない。Poll はカーソルを書き換えず、
// Acknowledge と AcknowledgeAll だけがカーソルを進める。
//
// メッセージの可視性は役割で決まる。購入者には出品者のメッセージ、
// 出品者には購入者のメッセージだけが候補になり、自分のメッセージは常に除外する。
// 1ユーザーが同じ注文で両方の役割を持つ場合は両方の条件の和集合を使う。
package notification
