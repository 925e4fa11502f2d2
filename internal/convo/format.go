package convo

import (
	"fmt"
	"strings"

	"wa-catalog/internal/repo"
	"wa-catalog/internal/search"
)

const supportContact = "support@wa-catalog.com"

func formatWelcome(userName string) string {
	greeting := "Bonjour"
	if userName != "" {
		greeting = "Bonjour " + userName
	}
	return "👋 " + greeting + "!\n\n" +
		"Bienvenue sur *WA-CATALOG* 🛍️\n" +
		"Votre marketplace WhatsApp au Bénin!\n\n" +
		"Je peux vous aider à trouver:\n" +
		"• Des produits\n" +
		"• Des vendeurs\n" +
		"• Des services\n\n" +
		"💬 *Que recherchez-vous aujourd'hui?*\n\n" +
		"_Tapez \"aide\" pour plus d'informations_"
}

func formatHelp() string {
	return "🤖 *WA-CATALOG BOT - AIDE*\n\n" +
		"Je peux vous aider à trouver:\n" +
		"• 🛍️ Produits spécifiques\n" +
		"• 🏪 Vendeurs par catégorie\n" +
		"• 📍 Commerces par ville\n\n" +
		"*COMMENT RECHERCHER:*\n" +
		"Envoyez simplement ce que vous cherchez:\n" +
		"• \"iPhone 13\"\n" +
		"• \"Chaussures Nike\"\n" +
		"• \"Vendeurs à Cotonou\"\n" +
		"• \"Restaurants à Parakou\"\n\n" +
		"📞 Support: " + supportContact
}

func formatRateLimit() string {
	return "⏱️ *Trop de requêtes!*\n\n" +
		"Vous avez atteint la limite de messages.\n" +
		"Veuillez patienter quelques secondes avant de réessayer.\n\n" +
		"_Cette limite est mise en place pour garantir une bonne expérience à tous les utilisateurs._"
}

func formatComplaintAck() string {
	return "📝 Votre message a été enregistré.\n\n" +
		"Notre équipe support vous contactera dans les 24h.\n" +
		"Vous pouvez aussi nous écrire à: " + supportContact + "\n\n" +
		"Merci de votre patience! 🙏"
}

func formatDidNotUnderstand() string {
	return "Je n'ai pas compris votre demande. 🤔\n\n" +
		"Essayez:\n" +
		"• Rechercher un produit: 'iPhone 13'\n" +
		"• Demander de l'aide: 'aide'"
}

func formatError() string {
	return "❌ *Oops! Une erreur s'est produite*\n\n" +
		"Nous n'avons pas pu traiter votre demande.\n" +
		"Veuillez réessayer dans quelques instants.\n\n" +
		"Si le problème persiste, contactez le support."
}

func formatMediaAck() string {
	return "📎 Fichier reçu. Veuillez envoyer une description de ce que vous recherchez."
}

func formatOrderPrompt() string {
	return "🛒 Pour commander, veuillez préciser:\n" +
		"• Le nom du produit\n" +
		"• Ou le nom du vendeur\n\n" +
		"Exemple: 'Je veux commander iPhone 13 chez TechShop'"
}

func formatOrderMiss() string {
	return "😔 Je n'ai pas trouvé ce produit ou vendeur.\n" +
		"Essayez une recherche pour voir les options disponibles."
}

func formatOrderConfirmation(vendor repo.Vendor, product repo.Product, userPhone string) string {
	return "✅ *Demande envoyée!*\n\n" +
		fmt.Sprintf("Votre intérêt pour *%s* a été transmis à *%s*.\n\n", product.Name, vendor.Name) +
		"Le vendeur vous contactera bientôt au numéro:\n" +
		"📱 " + userPhone + "\n\n" +
		"_Merci d'utiliser WA-Catalog!_"
}

func formatNoResults(query string) string {
	return fmt.Sprintf("😔 Aucun résultat pour *\"%s\"*\n\n", query) +
		"💡 *Suggestions:*\n" +
		"• Vérifiez l'orthographe\n" +
		"• Essayez des termes plus généraux\n" +
		"• Utilisez des mots-clés simples\n\n" +
		"Exemples: \"téléphone\", \"chaussures\", \"ordinateur\""
}

const (
	maxProductsShown = 5
	maxVendorsShown  = 3
)

func formatSearchResults(res search.Results, query string) string {
	if res.Count() == 0 {
		return formatNoResults(query)
	}

	divider := strings.Repeat("─", 25) + "\n\n"
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *Résultats pour \"%s\"*\n\n", query)

	if len(res.Products) > 0 {
		fmt.Fprintf(&b, "📦 *PRODUITS TROUVÉS (%d):*\n%s", len(res.Products), divider)
		for i, p := range res.Products {
			if i == maxProductsShown {
				fmt.Fprintf(&b, "_... et %d autres produits_\n\n", len(res.Products)-maxProductsShown)
				break
			}
			fmt.Fprintf(&b, "%d. %s\n%s", i+1, formatProduct(p), divider)
		}
	}

	if len(res.Vendors) > 0 {
		fmt.Fprintf(&b, "\n🏪 *VENDEURS CORRESPONDANTS (%d):*\n%s", len(res.Vendors), divider)
		for i, v := range res.Vendors {
			if i == maxVendorsShown {
				fmt.Fprintf(&b, "_... et %d autres vendeurs_\n\n", len(res.Vendors)-maxVendorsShown)
				break
			}
			fmt.Fprintf(&b, "%d. %s\n%s", i+1, formatVendor(v), divider)
		}
	}

	b.WriteString("\n💡 *Astuce:* Cliquez sur les liens WhatsApp pour contacter directement les vendeurs!")
	return b.String()
}

func formatProduct(p repo.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 *%s*\n", p.Name)
	fmt.Fprintf(&b, "💵 Prix: %s FCFA\n", formatPrice(p.Price))
	if p.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n", p.Description)
	}
	fmt.Fprintf(&b, "📂 Catégorie: %s\n", p.Category)
	condition := p.Condition
	if condition == "" {
		condition = "Neuf"
	}
	fmt.Fprintf(&b, "📊 État: %s\n", condition)
	if p.Availability == "in_stock" {
		b.WriteString("✅ En stock\n")
	} else {
		b.WriteString("❌ Rupture de stock\n")
	}
	if p.Vendor != nil {
		b.WriteString("\n👤 *Vendeur:*\n")
		fmt.Fprintf(&b, "• %s (%s)\n", p.Vendor.Name, p.Vendor.City)
		fmt.Fprintf(&b, "• WhatsApp: wa.me/%s\n", digitsOnly(p.Vendor.WhatsAppNumber))
	}
	return b.String()
}

func formatVendor(v repo.Vendor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏪 *%s*\n", v.Name)
	fmt.Fprintf(&b, "📍 %s\n", v.City)
	if len(v.Categories) > 0 {
		fmt.Fprintf(&b, "📦 Catégories: %s\n", strings.Join(v.Categories, ", "))
	}
	if v.Verified {
		b.WriteString("✅ Vendeur Vérifié\n")
	}
	if v.RatingAverage > 0 {
		fmt.Fprintf(&b, "⭐ Note: %.1f/5 (%d avis)\n", v.RatingAverage, v.RatingCount)
	}
	fmt.Fprintf(&b, "📱 WhatsApp: wa.me/%s\n", digitsOnly(v.WhatsAppNumber))
	return b.String()
}

// formatPrice renders an FCFA amount with a space every three digits.
func formatPrice(price int64) string {
	s := fmt.Sprintf("%d", price)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		out = "-" + out
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
