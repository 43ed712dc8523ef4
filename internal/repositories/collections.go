package repositories

// 文档库集合名
const (
	ColGroups        = "groups"
	ColProfiles      = "profiles"
	ColInvitations   = "invitations"
	ColParties       = "search_parties"
	ColChatChannels  = "chat_channels"
	ColChatMessages  = "chat_messages"
	ColNotifications = "notifications"
)
