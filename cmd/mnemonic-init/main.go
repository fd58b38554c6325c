package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tokenbot/gotrader/pkg/secretstore"
	"github.com/tokenbot/gotrader/pkg/wallet"
)

// 交互式录入助记词并写进加密 badger 库，避免助记词以明文落盘。
// 交易程序启动时会按 MNEMONIC 键从库里读取并派生钱包。
func main() {
	var (
		dbPath    = flag.String("store", getenv("SECRET_STORE_PATH", "data/secrets.badger"), "badger 密钥库路径")
		secretKey = flag.String("secret-key", getenv("SECRET_STORE_KEY", ""), "badger 加密密钥（32 字节 base64/hex）")
		force     = flag.Bool("force", false, "覆盖已存在的助记词")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("必须提供加密密钥：设置 SECRET_STORE_KEY 或传 -secret-key"))
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
		ReadOnly:      false,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	if _, exists, err := ss.GetString("MNEMONIC"); err != nil {
		fatal(err)
	} else if exists && !*force {
		fatal(fmt.Errorf("密钥库里已有助记词，确认覆盖请加 -force"))
	}

	fmt.Fprintln(os.Stderr, "请输入助记词（12/15/18/21/24 个单词），输入完成后回车：")
	mn := strings.Join(strings.Fields(readLine()), " ")
	switch len(strings.Fields(mn)) {
	case 12, 15, 18, 21, 24:
	default:
		fatal(fmt.Errorf("助记词单词数非法: %d", len(strings.Fields(mn))))
	}

	// 先派生一次确认助记词有效，再写库
	w, err := wallet.FromMnemonic(mn, "")
	if err != nil {
		fatal(fmt.Errorf("助记词无法派生钱包: %w", err))
	}

	if err := ss.SetString("MNEMONIC", mn); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "已写入 %s，派生地址 %s\n", *dbPath, w.Address.Hex())
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func readLine() string {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 4096), 4096)
	if sc.Scan() {
		return sc.Text()
	}
	return ""
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
