// Package internal 實現五子棋對局協調器。
//
// 單一行程、純記憶體的對局協調：房間生命週期、角色分配、落子與勝負判定、
// 快速配對、房間聊天，以及定期清理被遺棄的房間。
//
// # 元件
//
//   - Board：15×15 棋盤的純函數（合法性、五連判定、滿盤）
//   - Room：單局狀態機，每個房間一把鎖
//   - Manager：房間表、配對佇列、聊天緩衝與在線狀態的協調者
//   - MatchQueue：先進先出的配對佇列，過期在掃描時處理
//   - ChatStore：每房有界的訊息緩衝，訊息 ID 全域遞增
//   - PresenceTracker：玩家最後活動時間
//
// # 同步模型
//
// 客戶端以輪詢取得狀態（Manager.Poll）。協調器不維護訂閱者；
// WebSocketHub 只是在輪詢之上定期推送有變化的結果。
//
// # 併發
//
// 不同房間的操作互不阻塞；同一房間的操作由房間鎖序列化。
// 房間表的插入與刪除由 Manager 的讀寫鎖保護。
// 清理排程與請求競爭同一個房間時，先取得房間鎖的一方勝出，
// 晚到的請求會得到 ErrRoomNotFound。
//
// # 使用範例
//
//	manager := internal.NewManager(cfg.Coordinator, logger)
//	manager.Start()
//	defer manager.Stop()
//
//	entry, err := manager.CreateRoom("alice", "", internal.ColorBlack)
//	if err != nil {
//	    return err
//	}
//	_, err = manager.JoinRoom(entry.RoomID, "bob")
//
// HTTP 介面見 Handler.Routes，動作以 {"action": ..., "payload": ...} 信封傳入，
// 由 DecodeAction 解碼為對應的請求變體。
package internal
