// Package order は注文とそのステータス遷移を扱う。
//
// ステータスは pending → shipped → delivered、pending → cancelled の順にのみ進む。
// shipped と cancelled への遷移は出品者、delivered への遷移は購入者のみが行える。
// 遷移が成功するとバージョンが1つ進み、OrderStatusChanged イベントが1件記録される。
//
// Store は注文・明細・イベントをSQLiteに保存する。ステータス更新は
// バージョンを前提条件とした1トランザクションで行い、競合に負けた更新は
// ErrInvalidTransition になる。
package order
